package audit

// MaskedValue replaces secret material in history payloads.
const MaskedValue = "********"

// Keys masked before any snapshot leaves the service.
const (
	keyPassword          = "password"
	keyRememberToken     = "remember_token"
	keyGeneratedPassword = "generated_password"
)

// RedactSnapshot returns a copy of s with secret fields masked. Password and
// remember_token values are always replaced with MaskedValue, at every
// nesting level. generated_password survives only when keepGenerated is true:
// it is deliberately written in plaintext by user creation for one-time
// display on the CREATE record and stripped everywhere else.
func RedactSnapshot(s Snapshot, keepGenerated bool) Snapshot {
	if s == nil {
		return nil
	}
	redacted := redactValue(map[string]any(s), keepGenerated)
	return Snapshot(redacted.(map[string]any))
}

func redactValue(v any, keepGenerated bool) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			switch k {
			case keyPassword, keyRememberToken:
				out[k] = MaskedValue
			case keyGeneratedPassword:
				if keepGenerated {
					out[k] = inner
				}
			default:
				out[k] = redactValue(inner, keepGenerated)
			}
		}
		return out
	case Snapshot:
		return redactValue(map[string]any(val), keepGenerated)
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner, keepGenerated)
		}
		return out
	default:
		return v
	}
}
