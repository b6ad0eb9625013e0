package logger

// Field keys shared across packages so records can be queried uniformly.
const (
	FieldComponent = "component"
	FieldService   = "service"
	FieldSlotID    = "slot_id"
	FieldPolicy    = "policy"
	FieldAttempt   = "attempt"
	FieldError     = "error"
	FieldDelay     = "delay_ms"
	FieldURL       = "url"
	FieldMethod    = "method"
)

// Fields builds a field map from alternating keys and values. Non-string
// keys and a trailing odd value are ignored.
//
//	log.Warn("Retrying", logger.Fields(logger.FieldAttempt, 2))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
