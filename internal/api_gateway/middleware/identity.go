package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/provenance-ledger/internal/domain/actor"
)

const (
	// ActorIDHeader and ActorRoleHeader carry the identity verified by the
	// upstream credential service
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"

	// IdempotencyKeyHeader carries the client request token
	IdempotencyKeyHeader = "Idempotency-Key"

	// ActorKey is the key used to store the actor in the context
	ActorKey = "actor"

	maxIdempotencyKeyLen = 255
)

// Identity middleware attaches the calling actor to the context. Requests
// without a usable identity carry an unverified actor, which every core
// operation rejects as unauthenticated.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ActorIDHeader)
		role, err := actor.ParseRole(c.GetHeader(ActorRoleHeader))
		if err != nil {
			role = actor.Role(strings.TrimSpace(c.GetHeader(ActorRoleHeader)))
		}
		c.Set(ActorKey, actor.New(id, role))
		c.Next()
	}
}

// GetActor returns the actor attached by Identity
func GetActor(c *gin.Context) actor.Actor {
	if v, exists := c.Get(ActorKey); exists {
		if a, ok := v.(actor.Actor); ok {
			return a
		}
	}
	return actor.Actor{}
}

// GetIdempotencyKey returns the request token, empty when absent. Overlong
// tokens are reported as not ok.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	return key, len(key) <= maxIdempotencyKeyLen
}
