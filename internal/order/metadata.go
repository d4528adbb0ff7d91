package order

// Custom-field keys owned by the fraud pipeline.
const (
	FieldFraudRisk        = "fraud_risk"
	FieldOverallRiskScore = "overall_risk_score"
	FieldIPRiskScore      = "ip_risk_score"
	FieldTransactionID    = "transaction_id"
	FieldTransactionURL   = "transaction_url"
	FieldWarningsFactors  = "warnings_factors"
)

// FraudMetadata is the typed view of the fraud fields stored on an order.
// Zero values are meaningful: a failed provider call persists an all-zero
// record rather than leaving the order unmarked.
type FraudMetadata struct {
	RiskScore        float64  `json:"riskScore"`
	OverallRiskScore float64  `json:"overallRiskScore"`
	IPRiskScore      float64  `json:"ipRiskScore"`
	TransactionID    string   `json:"transactionId"`
	TransactionURL   string   `json:"transactionUrl"`
	WarningsFactors  []string `json:"warningsFactors"`
}

// Fields returns the metadata as custom-field upserts. WarningsFactors is
// never nil so consumers always see a list.
func (f *FraudMetadata) Fields() map[string]any {
	warnings := f.WarningsFactors
	if warnings == nil {
		warnings = []string{}
	}
	return map[string]any{
		FieldFraudRisk:        f.RiskScore,
		FieldOverallRiskScore: f.OverallRiskScore,
		FieldIPRiskScore:      f.IPRiskScore,
		FieldTransactionID:    f.TransactionID,
		FieldTransactionURL:   f.TransactionURL,
		FieldWarningsFactors:  warnings,
	}
}

// FraudMetadataFrom reads the fraud fields back out of a custom-field map.
// The second return reports whether any fraud field was present.
func FraudMetadataFrom(fields map[string]any) (*FraudMetadata, bool) {
	if fields == nil {
		return nil, false
	}

	md := &FraudMetadata{}
	found := false

	if v, ok := asFloat(fields[FieldFraudRisk]); ok {
		md.RiskScore = v
		found = true
	}
	if v, ok := asFloat(fields[FieldOverallRiskScore]); ok {
		md.OverallRiskScore = v
		found = true
	}
	if v, ok := asFloat(fields[FieldIPRiskScore]); ok {
		md.IPRiskScore = v
		found = true
	}
	if v, ok := fields[FieldTransactionID].(string); ok {
		md.TransactionID = v
		found = true
	}
	if v, ok := fields[FieldTransactionURL].(string); ok {
		md.TransactionURL = v
		found = true
	}
	if ws, ok := asStringSlice(fields[FieldWarningsFactors]); ok {
		md.WarningsFactors = ws
		found = true
	}

	if !found {
		return nil, false
	}
	return md, true
}

// FraudRiskFrom returns the fraud_risk field when the map carries one.
func FraudRiskFrom(fields map[string]any) (float64, bool) {
	if fields == nil {
		return 0, false
	}
	return asFloat(fields[FieldFraudRisk])
}

// IPRiskFrom returns the ip_risk_score field when the map carries one.
func IPRiskFrom(fields map[string]any) (float64, bool) {
	if fields == nil {
		return 0, false
	}
	return asFloat(fields[FieldIPRiskScore])
}

// HasRiskFields reports whether the map carries a fraud or IP risk score.
// The average cache uses this to pick scored orders out of a scan.
func HasRiskFields(fields map[string]any) bool {
	_, hasFraud := FraudRiskFrom(fields)
	_, hasIP := IPRiskFrom(fields)
	return hasFraud || hasIP
}

// asFloat converts JSON-decoded numbers, which may arrive as float64 or
// int depending on the decoding path.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}
