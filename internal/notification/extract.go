package notification

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

const topicPayment = "payment"

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ExtractPaymentID finds the payment id in a gateway notification. The JSON
// body wins over the legacy query shapes ?topic=payment&id= and
// ?type=payment&data.id= (or data[id]). It returns "" when none applies.
func ExtractPaymentID(body []byte, query url.Values) string {
	if len(bytes.TrimSpace(body)) > 0 {
		var b webhookBody
		if err := json.Unmarshal(body, &b); err == nil && b.Type == topicPayment {
			if id := scalarID(b.Data.ID); id != "" {
				return id
			}
		}
	}

	if query.Get("topic") == topicPayment {
		if id := strings.TrimSpace(query.Get("id")); id != "" {
			return id
		}
	}

	if query.Get("type") == topicPayment {
		for _, key := range []string{"data.id", "data[id]"} {
			if id := strings.TrimSpace(query.Get(key)); id != "" {
				return id
			}
		}
	}

	return ""
}

// scalarID accepts ids sent as JSON strings or numbers.
func scalarID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}
