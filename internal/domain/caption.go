package domain

import (
	"regexp"
	"strings"
)

const defaultDescription = "Clothing item"

// CaptionPrompt — инструкция для vision-модели, ответ разбирается ParseCaption.
const CaptionPrompt = "Describe the clothing item in the image and respond with format: " +
	"'<Type>: <Description>'. Type must be one of: Tops, Bottoms, Outerwear, " +
	"Footwear, or Other. Description should describe the clothing item in detail."

var captionPattern = regexp.MustCompile(`(?is)^(Tops|Bottoms|Outerwear|Footwear|Other):\s*(.+)$`)

// Порядок важен: первое совпадение выигрывает.
var typeKeywords = []struct {
	Type     ClothingType
	Keywords []string
}{
	{TypeTops, []string{"shirt", "blouse", "t-shirt", "top", "sweater", "tee", "tank"}},
	{TypeBottoms, []string{"pants", "jeans", "shorts", "skirt", "trousers", "leggings"}},
	{TypeOuterwear, []string{"jacket", "coat", "hoodie", "cardigan", "blazer", "vest", "parka"}},
	{TypeFootwear, []string{"shoes", "boots", "sneakers", "sandals", "heels", "loafers"}},
}

// Caption — разобранная подпись к фото вещи. Эмбеддится только Description.
type Caption struct {
	Type        ClothingType
	Description string
}

// ParseCaption разбирает "<Type>: <Description>". Если формат не совпал,
// тип выводится по ключевым словам, а описанием становится весь текст.
func ParseCaption(text string) Caption {
	text = strings.TrimSpace(text)
	if text == "" {
		return Caption{Type: TypeOther, Description: defaultDescription}
	}

	if m := captionPattern.FindStringSubmatch(text); m != nil {
		desc := strings.TrimSpace(m[2])
		if desc == "" {
			desc = defaultDescription
		}
		return Caption{Type: ParseClothingType(m[1]), Description: desc}
	}

	return Caption{Type: InferClothingType(text), Description: text}
}

// InferClothingType ищет ключевые слова как подстроки без учёта регистра.
func InferClothingType(text string) ClothingType {
	lower := strings.ToLower(text)
	for _, group := range typeKeywords {
		for _, kw := range group.Keywords {
			if strings.Contains(lower, kw) {
				return group.Type
			}
		}
	}
	return TypeOther
}
