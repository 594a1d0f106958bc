package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLineItem(t *testing.T, payload string) LineItem {
	t.Helper()
	var item LineItem
	require.NoError(t, json.Unmarshal([]byte(payload), &item))
	return item
}

func TestLineItem_FlattensNestedProductReference(t *testing.T) {
	item := decodeLineItem(t, `{"id":"li-1","product":{"id":"p-9","name":"Milk"},"quantity":1}`)

	assert.Equal(t, "p-9", item.ProductID)
	assert.NotContains(t, item.Extra, "product")

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"li-1","productId":"p-9","quantity":1}`, string(out))
}

func TestLineItem_ProductIDWinsOverNestedReference(t *testing.T) {
	item := decodeLineItem(t, `{"productId":"p-1","product":{"id":"p-2"}}`)
	assert.Equal(t, "p-1", item.ProductID)
}

func TestLineItem_NullProduct(t *testing.T) {
	item := decodeLineItem(t, `{"productId":"p-1","product":null}`)
	assert.Equal(t, "p-1", item.ProductID)

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p-1"}`, string(out))
}

func TestLineItem_PreservesUnknownFieldsAndAbsence(t *testing.T) {
	payload := `{
		"id": "li-7",
		"productId": "p-7",
		"quantity": 2,
		"price": 2999,
		"status": "ACTIVE",
		"optionSelections": [{"id": "o-1"}],
		"selectedWeightRange": null,
		"specialInstructions": "ripe ones"
	}`
	item := decodeLineItem(t, payload)

	assert.Equal(t, 2.0, item.Qty())
	require.NotNil(t, item.Price)
	assert.Equal(t, 2999.0, *item.Price)
	assert.Nil(t, item.PriceFactor)
	assert.Nil(t, item.IsStockAvailable)

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestLineItem_KeepsNullTypedFields(t *testing.T) {
	item := decodeLineItem(t, `{"productId":"p-1","quantity":null,"storeId":null}`)
	assert.Nil(t, item.Quantity)

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p-1","quantity":null,"storeId":null}`, string(out))

	bumped, err := json.Marshal(item.WithQuantity(3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p-1","quantity":3,"storeId":null}`, string(bumped))
}

func TestLineItem_WithQuantityLeavesOriginal(t *testing.T) {
	item := decodeLineItem(t, `{"productId":"p-1","quantity":2}`)
	updated := item.WithQuantity(5)

	assert.Equal(t, 2.0, item.Qty())
	assert.Equal(t, 5.0, updated.Qty())
}

func TestLineItem_RejectsNonObject(t *testing.T) {
	var item LineItem
	assert.Error(t, json.Unmarshal([]byte(`"p-1"`), &item))
}

func TestCart_FindItemIndex(t *testing.T) {
	cart := Cart{LineItems: []LineItem{{ProductID: "a"}, {ProductID: "b"}}}
	assert.Equal(t, 1, cart.FindItemIndex("b"))
	assert.Equal(t, -1, cart.FindItemIndex("c"))
}

func TestCart_MarshalEmitsEmptyLineItems(t *testing.T) {
	out, err := json.Marshal(Cart{ID: "cart-1", ServiceOptionID: ServiceOptionSixtyMin, DeliveryAddressID: "addr"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cart-1","serviceOptionId":"sixty-min-delivery","lineItems":[]}`, string(out))
}

func TestCart_DecodedLineItemsPassThrough(t *testing.T) {
	original := `[{"id":"li-1","product":{"id":"p-9","name":"Milk","images":["a"]},"quantity":1}]`
	cart := Cart{ID: "cart-1", ServiceOptionID: "click-and-collect"}
	require.NoError(t, cart.DecodeLineItems(json.RawMessage(original)))

	require.Len(t, cart.LineItems, 1)
	assert.Equal(t, "p-9", cart.LineItems[0].ProductID)

	out, err := json.Marshal(cart)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cart-1","serviceOptionId":"click-and-collect","lineItems":`+original+`}`, string(out))
}

func TestCart_WithLineItemsReplacesOriginal(t *testing.T) {
	cart := Cart{ID: "cart-1", ServiceOptionID: ServiceOptionSixtyMin}
	require.NoError(t, cart.DecodeLineItems(json.RawMessage(`[{"product":{"id":"p-9"},"quantity":1}]`)))

	updated := cart.WithLineItems([]LineItem{cart.LineItems[0].WithQuantity(4)})

	out, err := json.Marshal(updated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cart-1","serviceOptionId":"sixty-min-delivery","lineItems":[{"productId":"p-9","quantity":4}]}`, string(out))

	out, err = json.Marshal(cart)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"product":{"id":"p-9"}`)
}

func TestCart_DecodeLineItems(t *testing.T) {
	var cart Cart
	require.NoError(t, cart.DecodeLineItems(nil))
	assert.Nil(t, cart.LineItems)

	out, err := json.Marshal(cart)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"","serviceOptionId":"","lineItems":[]}`, string(out))

	assert.Error(t, cart.DecodeLineItems(json.RawMessage(`[1]`)))
}
