package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/storage"
)

const localClientID = "clientID"

func newCookieCodec(cfg config.ClientConfig, log *slog.Logger) (*securecookie.SecureCookie, error) {
	hashKey := []byte(cfg.HashKey)
	if len(hashKey) == 0 {
		log.Warn("CLIENT_COOKIE_HASH_KEY not set; generating a key, client cookies will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	var blockKey []byte
	switch len(cfg.BlockKey) {
	case 0:
	case 16, 24, 32:
		blockKey = []byte(cfg.BlockKey)
	default:
		return nil, fmt.Errorf("CLIENT_COOKIE_BLOCK_KEY must be 16, 24 or 32 bytes, got %d", len(cfg.BlockKey))
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(cfg.IdentityMaxAge.Seconds()))
	return codec, nil
}

// clientIdentity makes sure every browser carries a signed client id. The id
// scopes the durable store and the submission gate.
func (s *Server) clientIdentity(c *fiber.Ctx) error {
	name := s.cfg.Client.IdentityCookie

	var id string
	if raw := c.Cookies(name); raw != "" {
		if err := s.cookies.Decode(name, raw, &id); err != nil {
			s.logger.Debug("Discarding client cookie", "error", err)
			id = ""
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		encoded, err := s.cookies.Encode(name, id)
		if err != nil {
			s.logger.Error("Failed to encode client cookie", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to identify client")
		}
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    encoded,
			Path:     "/",
			MaxAge:   int(s.cfg.Client.IdentityMaxAge.Seconds()),
			Secure:   s.cfg.Server.Environment == "production",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	c.Locals(localClientID, id)
	return c.Next()
}

func clientID(c *fiber.Ctx) string {
	id, _ := c.Locals(localClientID).(string)
	return id
}

func (s *Server) durableStore(c *fiber.Ctx) *storage.RedisStore {
	return storage.NewRedisStore(s.redis, clientID(c))
}
