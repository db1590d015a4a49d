package operations

import (
	"fmt"

	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// decode maps item params onto out. Numeric strings are accepted for numbers.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func required(field string) error {
	return fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, field)
}
