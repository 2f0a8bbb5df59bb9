package render

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrMissingVariable is returned when a template references a mandatory
// placeholder that has no configured value.
var ErrMissingVariable = errors.New("missing required template variable")

// Variables is the enumerated set of recognized placeholders. Database and
// OutputLocation are mandatory when referenced; the rest fall back to the
// empty string. Placeholders outside this set are left verbatim so a
// partial configuration shows up as visibly broken SQL instead of a crash.
type Variables struct {
	AccountID       string
	Region          string
	PackagingBucket string
	RawBucket       string
	CleanBucket     string
	OutputLocation  string
	Database        string
	ProjectName     string
}

var placeholderPattern = regexp.MustCompile(`<([A-Z][A-Z0-9_]*)>`)

// Render substitutes recognized <NAME> placeholders in a SQL template.
func Render(template string, vars Variables) (string, error) {
	var renderErr error

	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, recognized, mandatory := resolve(name, vars)
		if !recognized {
			return match
		}
		if mandatory && value == "" && renderErr == nil {
			renderErr = fmt.Errorf("%w: %s", ErrMissingVariable, name)
		}
		return value
	})

	if renderErr != nil {
		return "", renderErr
	}
	return rendered, nil
}

func resolve(name string, vars Variables) (value string, recognized, mandatory bool) {
	switch name {
	case "DATABASE":
		return vars.Database, true, true
	case "OUTPUT_LOCATION":
		return vars.OutputLocation, true, true
	case "ACCOUNT_ID":
		return vars.AccountID, true, false
	case "REGION":
		return vars.Region, true, false
	case "PACKAGING_BUCKET":
		return vars.PackagingBucket, true, false
	case "RAW_BUCKET":
		return vars.RawBucket, true, false
	case "CLEAN_BUCKET":
		return vars.CleanBucket, true, false
	case "PROJECT_NAME":
		return vars.ProjectName, true, false
	default:
		return "", false, false
	}
}
