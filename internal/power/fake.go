package power

import "context"

// FakeSource is a Source for tests. Either Reading/Err is returned on every
// call, or Sequence is stepped through with the last element repeated once it
// is exhausted.
type FakeSource struct {
	Reading  Reading
	Err      error
	Sequence []Reading

	CallCount int
}

func (f *FakeSource) Read(ctx context.Context) (Reading, error) {
	f.CallCount++
	if f.Err != nil {
		return Reading{}, f.Err
	}
	if len(f.Sequence) > 0 {
		idx := f.CallCount - 1
		if idx >= len(f.Sequence) {
			idx = len(f.Sequence) - 1
		}
		return f.Sequence[idx], nil
	}
	return f.Reading, nil
}
