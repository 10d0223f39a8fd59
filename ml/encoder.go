package ml

import (
	"sort"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

// LabelEncoder maps the distinct labels of a categorical column to the
// contiguous codes 0..n-1. Codes follow the byte-wise order of the labels.
// An encoder is immutable once fit.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// FitLabelEncoder builds an encoder from the observed values of a column.
func FitLabelEncoder(labels []string) *LabelEncoder {
	classes := lo.Uniq(labels)
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for code, label := range classes {
		index[label] = code
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Encode returns the code of label. Labels that were not observed at fit time
// yield a NotFound error.
func (e *LabelEncoder) Encode(label string) (int, error) {
	code, ok := e.index[label]
	if !ok {
		return 0, errors.NotFoundf("label %q", label)
	}
	return code, nil
}

// Transform encodes every label, failing on the first unseen one.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	codes := make([]int, len(labels))
	for i, label := range labels {
		code, err := e.Encode(label)
		if err != nil {
			return nil, errors.Trace(err)
		}
		codes[i] = code
	}
	return codes, nil
}

// Decode is the inverse of Encode.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", errors.NotFoundf("code %d", code)
	}
	return e.classes[code], nil
}

// Classes returns the observed labels ordered by code.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

func (e *LabelEncoder) Len() int {
	return len(e.classes)
}
