package relay

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RewriteModel replaces the top-level "model" field of a JSON body.
// Bodies without a model field are returned unchanged.
func RewriteModel(body []byte, model string) ([]byte, error) {
	if len(body) == 0 || !gjson.GetBytes(body, "model").Exists() {
		return body, nil
	}
	return sjson.SetBytes(body, "model", model)
}

// RequestModel reads the top-level "model" field of a JSON body.
func RequestModel(body []byte) string {
	return gjson.GetBytes(body, "model").String()
}
