package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	AdminKeyHeader          = "X-Admin-Key"
	SchedulerIdentityHeader = "X-Scheduler-Identity"
	WebhookSecretHeader     = "X-Webhook-Secret"
)

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// AdminAuth admits requests carrying the admin key or an allow-listed
// scheduler identity.
func AdminAuth(adminKey string, schedulerIdentities []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(schedulerIdentities))
	for _, id := range schedulerIdentities {
		if id != "" {
			allowed[id] = true
		}
	}

	return func(c *gin.Context) {
		key := c.GetHeader(AdminKeyHeader)
		identity := c.GetHeader(SchedulerIdentityHeader)

		if key == "" && identity == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Admin key required"})
			c.Abort()
			return
		}

		if (adminKey != "" && key != "" && secureEqual(key, adminKey)) || allowed[identity] {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		c.Abort()
	}
}

// WebhookSecret admits requests presenting the shared secret in the
// X-Webhook-Secret header or the secret query parameter.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(WebhookSecretHeader)
		if provided == "" {
			provided = c.Query("secret")
		}

		if secret == "" || provided == "" || !secureEqual(provided, secret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
			c.Abort()
			return
		}

		c.Next()
	}
}
