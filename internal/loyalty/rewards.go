package loyalty

import "strings"

// Reward is one redeemable item of the reward store.
type Reward struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"` // Cost in points.
	Image string `json:"image"`
}

// RewardCatalog is the fixed list shown in the reward store.
var RewardCatalog = []Reward{
	{ID: 1, Name: "Vitamin C 500 มก. 1 กล่อง", Price: 390, Image: "/Vitamin-C.png"},
	{ID: 2, Name: "Zinc Plus 1 กล่อง", Price: 450, Image: "/zinc.png"},
	{ID: 3, Name: "Gluta Plus Red Orange 1 กล่อง", Price: 890, Image: "/gluta.png"},
	{ID: 4, Name: "แอมเซลมัลติวิต พลัส 1 กล่อง", Price: 300, Image: "/Amsel-Multi-Vit-Plus.png"},
	{ID: 5, Name: "แคลเซียม แอลทรีโอเนต 1 กล่อง", Price: 650, Image: "/Calcium.png"},
	{ID: 6, Name: "อะมิโนบิลเบอร์รี่ 1 กล่อง", Price: 750, Image: "/amsel-amino-bilberry.png"},
}

// RewardOffer is a catalog item annotated for one member.
type RewardOffer struct {
	Reward
	Affordable bool  `json:"affordable"`
	Shortfall  int64 `json:"shortfall"`
}

// Offers annotates the catalog with what the member can redeem using points.
func Offers(points int64) []RewardOffer {
	out := make([]RewardOffer, 0, len(RewardCatalog))
	for _, reward := range RewardCatalog {
		offer := RewardOffer{Reward: reward, Affordable: points >= reward.Price}
		if !offer.Affordable {
			offer.Shortfall = reward.Price - points
		}
		out = append(out, offer)
	}
	return out
}

// OtherShop is the free-text choice of the shop picker.
const OtherShop = "อื่นๆ (ระบุ)"

// Shops lists the stores whose receipts are accepted.
var Shops = []string{
	"Amsel Official Store - Shopee",
	"Amsel Official Store - Lazada",
	"Amsel Flagship Store",
	"ร้านขายยา Fascino",
	"ร้าน Boots",
	"ร้าน Watson",
	OtherShop,
}

// ResolveShop returns the shop name to record. A custom name is only used with OtherShop.
func ResolveShop(shop, custom string) (string, bool) {
	shop = strings.TrimSpace(shop)
	for _, candidate := range Shops {
		if candidate != shop {
			continue
		}
		if shop == OtherShop {
			custom = strings.TrimSpace(custom)
			if custom == "" {
				return "", false
			}
			return custom, true
		}
		return shop, true
	}
	return "", false
}

// FullName joins title, first and last name, falling back when the member has no name yet.
func FullName(title, firstName, lastName, fallback string) string {
	if strings.TrimSpace(firstName) == "" {
		if fallback == "" {
			return "สมาชิก"
		}
		return fallback
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{title, firstName, lastName} {
		if p := strings.TrimSpace(part); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
