package util

// Envelope is the JSON body shape of every API answer.
type Envelope map[string]any

func Error(message string) Envelope {
	return Envelope{"error": message}
}

func Message(message string) Envelope {
	return Envelope{"message": message}
}

func Data(key string, value any) Envelope {
	return Envelope{key: value}
}

// With returns a copy of e with key set.
func (e Envelope) With(key string, value any) Envelope {
	out := make(Envelope, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[key] = value
	return out
}
