package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"usersapp/internal/validation"
)

var (
	nameRule     = validation.Rule{Field: "name", Tag: "min=1", Message: "name is required"}
	emailRule    = validation.Rule{Field: "email", Tag: "email", Message: "invalid email"}
	passwordRule = validation.Rule{Field: "password", Tag: "min=6", Message: "password must be at least 6 characters"}

	// bcrypt hashes at most 72 bytes, so longer passwords are refused before hashing.
	newPasswordRule = validation.Rule{
		Field:    "password",
		Tag:      "min=6,max_bytes=72",
		Message:  passwordRule.Message,
		Messages: map[string]string{"max_bytes": "password must be at most 72 bytes"},
	}
)

var loginSchema = validation.Schema{
	Rules: []validation.Rule{emailRule, passwordRule},
}

var createUserSchema = validation.Schema{
	Rules: []validation.Rule{nameRule, emailRule, newPasswordRule},
}

var updateUserSchema = validation.Schema{
	Rules: []validation.Rule{
		optional(nameRule),
		optional(emailRule),
		optional(newPasswordRule),
	},
	RequireAny:        true,
	RequireAnyMessage: "provide at least one field to update",
}

var userIDSchema = validation.Schema{
	Rules: []validation.Rule{{Field: "id", Tag: "uuid", Message: "invalid id"}},
}

func optional(rule validation.Rule) validation.Rule {
	rule.Optional = true
	return rule
}

type loginRequest struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type createUserRequest struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type updateUserRequest struct {
	Name     *string `mapstructure:"name"`
	Email    *string `mapstructure:"email"`
	Password *string `mapstructure:"password"`
}

// bindBody decodes the JSON body and validates it against schema.
func bindBody(c *gin.Context, schema validation.Schema, out any) error {
	raw, err := validation.DecodeJSON(c.Request.Body)
	if err != nil {
		return err
	}
	return schema.Validate(raw, out)
}

// userIDParam accepts UUIDs in either case. The id itself is passed on
// unchanged, so ownership compares it exactly against the token subject.
func userIDParam(c *gin.Context) (string, error) {
	id := c.Param("id")
	if err := userIDSchema.Validate(map[string]any{"id": strings.ToLower(id)}, nil); err != nil {
		return "", err
	}
	return id, nil
}
