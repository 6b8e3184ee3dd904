package executor

import (
	"mime"
	"net/http"

	"github.com/tidwall/gjson"

	"endpoint-prober/internal/session"
	"endpoint-prober/internal/types"
)

const (
	msgNotJSON    = "Response is not a JSON"
	msgParseError = "Error during response parsing"
)

// Classify maps a response to a test result. Only 200 is Successful. For
// failures the details come from the JSON body's status, error_code and
// message members when the response is declared as JSON; status falls back
// to the HTTP status code.
func Classify(resp *session.Response) (types.TestResult, *types.FailureDetails) {
	if resp.StatusCode == http.StatusOK {
		return types.Successful, nil
	}

	mediaType, _, err := mime.ParseMediaType(resp.ContentType())
	if err != nil || mediaType != "application/json" {
		return types.Failed, &types.FailureDetails{Status: resp.StatusCode, Message: msgNotJSON}
	}
	if !gjson.ValidBytes(resp.Body) {
		return types.Failed, &types.FailureDetails{Status: resp.StatusCode, Message: msgParseError}
	}

	body := gjson.ParseBytes(resp.Body)
	details := &types.FailureDetails{
		Status:    resp.StatusCode,
		ErrorCode: valueOf(body.Get("error_code")),
		Message:   valueOf(body.Get("message")),
	}
	if status := body.Get("status"); status.Exists() && status.Type != gjson.Null {
		details.Status = status.Value()
	}
	return types.Failed, details
}

func valueOf(r gjson.Result) any {
	if !r.Exists() {
		return nil
	}
	return r.Value()
}
