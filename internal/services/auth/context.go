package auth

import "github.com/gofiber/fiber/v2"

const localsKey = "auth_identity"

func SetIdentity(c *fiber.Ctx, identity *Identity) {
	c.Locals(localsKey, identity)
}

func GetIdentity(c *fiber.Ctx) *Identity {
	identity, ok := c.Locals(localsKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

func GetUserID(c *fiber.Ctx) (string, bool) {
	identity := GetIdentity(c)
	if identity == nil || identity.UserID == "" {
		return "", false
	}
	return identity.UserID, true
}
