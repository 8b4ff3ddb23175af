package merkez

import (
	"encoding/json"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
)

var (
	ErrInvalid = errors.New("invalid merkez record")

	enumTag  = "enum"
	enumText = "{0} has an unknown value"

	priceRangeTag  = "pricerange"
	priceRangeText = "maximum price cannot be lower than minimum price"
)

// InitValidators registers the merkez validations on `validate`.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(enumTag, enumValidation)
	core.RegisterCustomTranslation(validate, translator, enumTag, enumText)

	validate.RegisterStructValidation(merkezStructValidation, Merkez{})
	core.RegisterCustomTranslation(validate, translator, priceRangeTag, priceRangeText)
}

// enumValidation checks that a closed enumeration holds one of its known values.
func enumValidation(fl validator.FieldLevel) bool {
	if e, ok := fl.Field().Interface().(interface{ Valid() bool }); ok {
		return e.Valid()
	}
	return false
}

func merkezStructValidation(sl validator.StructLevel) {
	m := sl.Current().Interface().(Merkez)
	if m.PriceMin.Valid && m.PriceMax.Valid && m.PriceMax.Int < m.PriceMin.Int {
		sl.ReportError(m.PriceMax, "prixMax", "PriceMax", priceRangeTag, "")
	}
}

// Decoder turns upstream JSON into validated Merkez records.
type Decoder struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewDecoder returns a Decoder using `validate`, which must have been passed to InitValidators.
func NewDecoder(validate *validator.Validate, translator ut.Translator) *Decoder {
	return &Decoder{validate: validate, translator: translator}
}

// Decode reads a single record. Option values are normalized before validation;
// a record with an unknown option value is rejected as a whole.
func (d *Decoder) Decode(data []byte) (Merkez, error) {
	var m Merkez
	if err := json.Unmarshal(data, &m); err != nil {
		return Merkez{}, errors.Wrap(err, "decoding merkez")
	}
	if err := d.Check(&m); err != nil {
		return Merkez{}, err
	}
	return m, nil
}

// Check normalizes and validates a record decoded elsewhere.
func (d *Decoder) Check(m *Merkez) error {
	m.normalize()
	if err := d.validate.Struct(m); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return core.NewValidationError(ErrInvalid, core.FieldErrors(vErrs, d.translator)...)
		}
		return errors.Wrap(err, "validating merkez")
	}
	return nil
}

// Rejected is a list entry that could not be decoded.
type Rejected struct {
	Index int
	ID    int
	Err   error
}

func (r Rejected) Error() string {
	return fmt.Sprintf("merkez #%d (id %d): %v", r.Index, r.ID, r.Err)
}

// DecodeList reads a JSON array of records. Entries that fail to decode are returned
// in `rejected` and left out of `list`; only a malformed array fails the whole call.
func (d *Decoder) DecodeList(data []byte) (list []Merkez, rejected []Rejected, err error) {
	var raws []json.RawMessage
	if err = json.Unmarshal(data, &raws); err != nil {
		return nil, nil, errors.Wrap(err, "decoding merkez list")
	}

	list = make([]Merkez, 0, len(raws))
	for i, raw := range raws {
		m, dErr := d.Decode(raw)
		if dErr != nil {
			var id struct {
				ID int `json:"id"`
			}
			_ = json.Unmarshal(raw, &id)
			rejected = append(rejected, Rejected{Index: i, ID: id.ID, Err: dErr})
			continue
		}
		list = append(list, m)
	}
	return list, rejected, nil
}
