package handler

import (
	"encoding/json"

	"github.com/labstack/echo/v4"
)

// jsonDecoder returns a strict decoder over the request body: fields the
// target type does not declare are an error rather than silently dropped.
func jsonDecoder(c echo.Context) *json.Decoder {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	return dec
}
