package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appValidator "github.com/charlesng35/tidylink/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	failures := appValidator.ValidationErrors{
		{Field: "content", Tag: "required"},
		{Field: "content", Tag: "max", Param: "4000"},
		{Field: "api_base_url", Tag: "endpoint"},
		{Field: "log_level", Tag: "oneof", Param: "debug info"},
		{Field: "page", Tag: "gte", Param: "1"},
	}

	require.Equal(t,
		"content is required; content must be at most 4000 characters; "+
			"api base url must be an http(s) or ws(s) URL, or host:port; "+
			"log level must be one of debug, info; page failed validation: gte=1",
		formatValidationError(fmt.Errorf("send: %w", failures)))

	require.Equal(t, invalidPayload, formatValidationError(errors.New("boom")))
	require.Equal(t, invalidPayload, formatValidationError(appValidator.ValidationErrors{}))
}
