package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/utils"
)

type adminKey struct {
	label string
	key   []byte
}

// AdminAuthMiddleware guards the admin routes with static API keys.
// An entry may be "label:key"; the label names the actor recorded on parcel events.
type AdminAuthMiddleware struct {
	keys []adminKey
}

// NewAdminAuthMiddleware parses the configured keys. Blank entries are ignored.
func NewAdminAuthMiddleware(entries []string) *AdminAuthMiddleware {
	m := &AdminAuthMiddleware{}
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		label, key, found := strings.Cut(entry, ":")
		if !found || label == "" || key == "" {
			label, key = fmt.Sprintf("key%d", i+1), entry
		}
		m.keys = append(m.keys, adminKey{label: label, key: []byte(key)})
	}
	return m
}

// match compares against every key so timing does not reveal which one matched
func (m *AdminAuthMiddleware) match(presented string) (string, bool) {
	var label string
	found := false
	for _, k := range m.keys {
		if subtle.ConstantTimeCompare([]byte(presented), k.key) == 1 && !found {
			label = k.label
			found = true
		}
	}
	return label, found
}

// Authenticate rejects requests without a valid X-API-Key header
func (m *AdminAuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		apiKey := strings.TrimSpace(c.Get(utils.AdminAPIKeyHeader))
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		label, ok := m.match(apiKey)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid API key",
				Error: dto.ErrorDetail{
					Code: "INVALID_API_KEY",
				},
			})
		}

		c.Locals(utils.ActorKey, "admin:"+label)
		return c.Next()
	}
}
