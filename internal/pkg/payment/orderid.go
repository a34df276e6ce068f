package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderRef is the decoded product reference of an order.
type OrderRef struct {
	Type      ProductType
	SourceID  uint64
	CreatedAt time.Time
}

// NewOrderID builds "<TYPE>_<sourceId>_<epochMillis>".
func NewOrderID(pt ProductType, sourceID uint64, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d", pt.Prefix(), sourceID, now.UnixMilli())
}

// ParseOrderID decodes an order id strictly. It is the fallback decoder for
// callbacks that do not carry the product tag.
func ParseOrderID(orderID string) (OrderRef, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderRef{}, ErrMissingOrderIdentification
	}

	parts := strings.Split(orderID, "_")
	if len(parts) != 3 {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}
	if parts[0] != strings.ToUpper(parts[0]) {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}
	pt, ok := ParseProductType(parts[0])
	if !ok {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}
	sourceID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || sourceID == 0 {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}
	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || millis <= 0 {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}

	return OrderRef{Type: pt, SourceID: sourceID, CreatedAt: time.UnixMilli(millis).UTC()}, nil
}

// ResolveOrderRef prefers the explicit product tag and source reference and
// falls back to parsing the order id. When both are present they must agree.
func ResolveOrderRef(orderID, productTag, sourceRef string) (OrderRef, error) {
	productTag = strings.TrimSpace(productTag)
	sourceRef = strings.TrimSpace(sourceRef)
	orderID = strings.TrimSpace(orderID)

	if productTag == "" {
		return ParseOrderID(orderID)
	}

	pt, ok := ParseProductType(productTag)
	if !ok {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}
	ref := OrderRef{Type: pt}

	parsed, parseErr := ParseOrderID(orderID)
	if sourceRef != "" {
		id, err := strconv.ParseUint(sourceRef, 10, 64)
		if err != nil || id == 0 {
			return OrderRef{}, ErrInvalidOrderIDFormat
		}
		ref.SourceID = id
	} else if parseErr == nil {
		ref.SourceID = parsed.SourceID
	} else if orderID == "" {
		return OrderRef{}, ErrMissingOrderIdentification
	} else {
		return OrderRef{}, ErrInvalidOrderIDFormat
	}

	if parseErr == nil {
		if parsed.Type != ref.Type || parsed.SourceID != ref.SourceID {
			return OrderRef{}, ErrInvalidOrderIDFormat
		}
		ref.CreatedAt = parsed.CreatedAt
	}
	return ref, nil
}
