package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxRequestBody ограничивает тело запроса, большие записи занимают несколько мегабайт.
const MaxRequestBody = 32 << 20

var ErrTrailingData = errors.New("unexpected data after JSON value")

// DecodeJSONRequest читает ровно одно JSON-значение, неизвестные поля отклоняются.
func DecodeJSONRequest(r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if decoder.More() {
		return ErrTrailingData
	}
	return nil
}

func ReadRequestBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}
