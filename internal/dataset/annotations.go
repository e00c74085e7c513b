package dataset

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Annotation is one ground-truth caption for one image.
type Annotation struct {
	ImageID int64  `json:"image_id"`
	Caption string `json:"caption"`
}

type annotationFile struct {
	Annotations []Annotation `json:"annotations"`
}

// ReferenceMap groups captions by image id. An image usually carries
// several reference captions.
type ReferenceMap map[int64][]string

// LoadAnnotations reads a COCO-style annotation JSON: an object with an
// "annotations" array of {image_id, caption} records.
func LoadAnnotations(path string) ([]Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read annotations")
	}
	var file annotationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse annotations")
	}
	if len(file.Annotations) == 0 {
		return nil, errors.Errorf("no annotations in %s", path)
	}
	return file.Annotations, nil
}

// BuildReferenceMap lower-cases captions and groups them by image id.
func BuildReferenceMap(anns []Annotation) ReferenceMap {
	refs := make(ReferenceMap)
	for _, ann := range anns {
		refs[ann.ImageID] = append(refs[ann.ImageID], strings.ToLower(ann.Caption))
	}
	return refs
}
