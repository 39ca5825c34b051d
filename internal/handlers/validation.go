package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/tidylink/pkg/errors"
	"github.com/charlesng35/tidylink/pkg/response"
	appValidator "github.com/charlesng35/tidylink/pkg/validator"
)

const invalidPayload = "invalid request payload"

// ruleMessages renders one failed validation rule as a sentence about the field.
var ruleMessages = map[string]func(field, param string) string{
	"required": func(field, _ string) string { return field + " is required" },
	"min": func(field, param string) string {
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	},
	"max": func(field, param string) string {
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	},
	"oneof": func(field, param string) string {
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(param, " ", ", "))
	},
	"endpoint": func(field, _ string) string {
		return field + " must be an http(s) or ws(s) URL, or host:port"
	},
	"uuid": func(field, _ string) string { return field + " must be a valid id" },
}

// bindAndValidate decodes the JSON body into dest and runs its validate tags.
// On failure a 400 is written and false returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return invalidPayload
	}

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		field := prettifyFieldName(failure.Field)
		if render, ok := ruleMessages[failure.Tag]; ok {
			messages = append(messages, render(field, failure.Param))
			continue
		}
		rule := failure.Tag
		if failure.Param != "" {
			rule += "=" + failure.Param
		}
		messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, rule))
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// parseIntQuery reads an integer query parameter such as page or page_size.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
