package handlers

import (
	"fmt"
	"strings"

	"adminpanel/internal/models"

	"github.com/gofiber/fiber/v2"
)

// parsePayload reads a submitted form as a flat payload. JSON objects,
// url-encoded and multipart forms are accepted. JSON fields must hold
// scalars; arrays and nested objects are rejected. An empty body yields an
// empty payload so the rules can report every missing field.
func parsePayload(c *fiber.Ctx) (models.Payload, error) {
	p := make(models.Payload)
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return p, nil
	}

	ctype := strings.ToLower(string(c.Request().Header.ContentType()))
	switch {
	case strings.HasPrefix(ctype, fiber.MIMEApplicationJSON):
		var raw map[string]interface{}
		if err := c.App().Config().JSONDecoder(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode JSON body: %w", err)
		}
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
				// null is treated as an omitted field
			case string:
				p[k] = val
			case map[string]interface{}, []interface{}:
				return nil, fmt.Errorf("field %q must be a scalar value", k)
			default:
				p[k] = fmt.Sprint(val)
			}
		}
	case strings.HasPrefix(ctype, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart form: %w", err)
		}
		for k, values := range form.Value {
			if len(values) > 0 {
				p[k] = values[0]
			}
		}
	case strings.HasPrefix(ctype, fiber.MIMEApplicationForm):
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			p[string(key)] = string(value)
		})
	default:
		return nil, fmt.Errorf("unsupported content type %q", ctype)
	}
	return p, nil
}
