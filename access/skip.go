package access

// Skip is the decode target of a value that is validated and stepped over
// without being materialized.
type Skip struct{}

type skipping struct {
	Formula
}

// Skipping returns a decoder for f that yields Skip. It performs the same
// checks as a full decode.
func Skipping(f Formula) Decoder[Skip] {
	return skipping{Formula: f}
}

func (s skipping) Deserialize(d *Deserializer) (Skip, error) {
	return Skip{}, s.Formula.Validate(d)
}

func (s skipping) DeserializeInPlace(_ *Skip, d *Deserializer) error {
	return s.Formula.Validate(d)
}

func (s skipping) String() string {
	return "skip(" + Describe(s.Formula) + ")"
}
