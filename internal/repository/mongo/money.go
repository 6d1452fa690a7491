package mongo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// money decodes any numeric BSON value (double, int32, int64, decimal128 or
// a numeric string) into a decimal and always encodes as decimal128.
type money struct {
	decimal.Decimal
}

func newMoney(d decimal.Decimal) money { return money{d} }

func moneyPtr(d *decimal.Decimal) *money {
	if d == nil {
		return nil
	}
	return &money{*d}
}

func (m *money) decimalPtr() *decimal.Decimal {
	if m == nil {
		return nil
	}
	d := m.Decimal
	return &d
}

func (m money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(m.Decimal.String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s as decimal128: %w", m.Decimal, err)
	}
	return bson.MarshalValue(d128)
}

func (m *money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(rv.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(rv.Int64())
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return fmt.Errorf("decode decimal128: %w", err)
		}
		m.Decimal = d
	case bsontype.String:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return fmt.Errorf("decode numeric string: %w", err)
		}
		m.Decimal = d
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode BSON %s as an amount", t)
	}
	return nil
}
