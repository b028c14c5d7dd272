package job

func SetStatus(status Status) UpdateSetter {
	return func(j *Job) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		j.Status = status
		return nil
	}
}

// MergeResult adds extra keys to the existing result, keeping any keys it
// does not name.
func MergeResult(extra JSONMap) UpdateSetter {
	return func(j *Job) error {
		if j.Result == nil {
			j.Result = JSONMap{}
		}
		for k, v := range extra {
			j.Result[k] = v
		}
		return nil
	}
}
