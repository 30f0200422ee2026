// Package validation provides input validation middleware for the Accordo API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxMessageLength is the maximum length for a vendor message.
const MaxMessageLength = 8000

// dealIDRegex validates deal identifiers as issued by the service.
var dealIDRegex = regexp.MustCompile(`^deal_[a-f0-9]{32}$`)

// templateIDRegex validates policy template identifiers.
var templateIDRegex = regexp.MustCompile(`^tmpl_[a-f0-9]{32}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidDealID checks if a string is a well-formed deal ID
func IsValidDealID(id string) bool {
	return dealIDRegex.MatchString(id)
}

// IsValidTemplateID checks if a string is a well-formed template ID
func IsValidTemplateID(id string) bool {
	return templateIDRegex.MatchString(id)
}

// SanitizeMessage trims a vendor message, limits its length, and strips
// null bytes before it reaches extraction or storage.
func SanitizeMessage(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxMessageLength {
		s = s[:MaxMessageLength]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// DealIDParamMiddleware validates the :id URL parameter on deal routes.
// Rejects malformed identifiers before any store lookup.
func DealIDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id != "" && !IsValidDealID(id) && !IsValidTemplateID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_id",
				"message": "id must be a well-formed identifier",
			})
			return
		}
		c.Next()
	}
}
