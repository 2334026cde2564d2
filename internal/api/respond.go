package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/docvault/internal/apperr"
)

const internalMessage = "internal server error"

func respondJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// respondError writes err as {errors:[...]} for validation failures and
// {error:"..."} otherwise. Causes are logged, never returned.
func (s *Server) respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(internalMessage, err)
	}
	status := apperr.HTTPStatus(ae)
	switch ae.Kind {
	case apperr.KindValidation:
		c.AbortWithStatusJSON(status, gin.H{"errors": ae.Fields})
		return
	case apperr.KindInternal:
		s.log.WithFields(logrus.Fields{
			"request_id": requestIDFrom(c),
			"path":       c.Request.URL.Path,
		}).WithError(ae.Err).Error(ae.Message)
	case apperr.KindTimeout:
		s.log.WithFields(logrus.Fields{
			"request_id": requestIDFrom(c),
			"path":       c.Request.URL.Path,
		}).WithError(ae.Err).Warn(ae.Message)
	}
	msg := ae.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
