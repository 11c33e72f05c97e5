// Package entity defines the shopping cart and its pure operations.
package entity

// Item はカート内の1行です。同じ商品でもカラーが違えば別の行になります。
type Item struct {
	ProductID string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Color     string  `json:"color,omitempty"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

func (i Item) matches(productID, color string) bool {
	return i.ProductID == productID && i.Color == color
}

// Cart はユーザーのカートです。
type Cart struct {
	Items []Item `json:"items"`
}

// Add は商品を1つ追加します。同じ商品・カラーの行があれば数量を1増やし、
// なければ数量1の行を末尾に追加します。item.Quantity は無視されます。
func (c *Cart) Add(item Item) {
	for i := range c.Items {
		if c.Items[i].matches(item.ProductID, item.Color) {
			c.Items[i].Quantity++
			return
		}
	}
	item.Quantity = 1
	c.Items = append(c.Items, item)
}

// Remove は商品・カラーが一致する行を削除し、削除したかどうかを返します。
func (c *Cart) Remove(productID, color string) bool {
	kept := c.Items[:0]
	removed := false
	for _, it := range c.Items {
		if it.matches(productID, color) {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return removed
}

// UpdateQuantity は数量を設定します。quantity が0以下なら行を削除します。
// 一致する行がなければ false を返します。
func (c *Cart) UpdateQuantity(productID string, quantity int, color string) bool {
	if quantity <= 0 {
		return c.Remove(productID, color)
	}
	for i := range c.Items {
		if c.Items[i].matches(productID, color) {
			c.Items[i].Quantity = quantity
			return true
		}
	}
	return false
}

// Clear はカートを空にします。
func (c *Cart) Clear() {
	c.Items = nil
}

// Total は合計金額（価格×数量の総和）です。
func (c Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Count はカート内の商品点数（数量の総和）です。
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
