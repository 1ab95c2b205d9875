package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DeliveryCodes 订单交付卡码，商品ID -> 卡码列表
type DeliveryCodes map[string][]string

// Value 实现 driver.Valuer 接口
func (d DeliveryCodes) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (d *DeliveryCodes) Scan(value interface{}) error {
	if value == nil {
		*d = DeliveryCodes{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported delivery codes type: %T", value)
	}
	return json.Unmarshal(bytes, d)
}

// Clone 深拷贝，避免调用方修改订单中冻结的卡码
func (d DeliveryCodes) Clone() DeliveryCodes {
	if d == nil {
		return nil
	}
	out := make(DeliveryCodes, len(d))
	for productID, codes := range d {
		out[productID] = append([]string(nil), codes...)
	}
	return out
}
