package strategy

// orElse composes a primary route with its fallback as an explicit data-flow
// branch: when the primary fails, the error is reported and the fallback
// result is returned in its place.
func orElse[T any](primary, fallback func() (T, error), onErr func(error)) (T, error) {
	value, err := primary()
	if err == nil {
		return value, nil
	}
	if onErr != nil {
		onErr(err)
	}
	return fallback()
}
