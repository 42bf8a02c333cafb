package result

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// MarshalDelivery serialises a Delivery to JSON.
func MarshalDelivery(d *Delivery) ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDelivery deserialises a Delivery from JSON.
func UnmarshalDelivery(data []byte) (*Delivery, error) {
	var d Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MarshalLocated serialises a Located to JSON.
func MarshalLocated(l *Located) ([]byte, error) {
	return json.Marshal(l)
}

// UnmarshalLocated deserialises a Located from JSON.
func UnmarshalLocated(data []byte) (*Located, error) {
	var l Located
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// HashLines returns the SHA-256 hex digest of the rendered lines, in
// order. Two deliveries with the same hash carry the same content.
func HashLines(lines []string) string {
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
