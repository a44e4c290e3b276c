package api

import (
	"encoding/json"
	"net/http"
)

func decodeJSON(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
