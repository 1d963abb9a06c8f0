package catalog

import "github.com/ramonehamilton/card-catalog/internal/cards/scryfall"

// ResolveImageURL picks border_crop, normal then large from the primary image
// set, then the same from the first face. "" means no image.
func ResolveImageURL(primary *scryfall.ImageURIs, faces []scryfall.CardFace) string {
	if url := pickImage(primary); url != "" {
		return url
	}
	if len(faces) > 0 {
		return pickImage(faces[0].ImageURIs)
	}
	return ""
}

func pickImage(uris *scryfall.ImageURIs) string {
	if uris == nil {
		return ""
	}
	for _, url := range []string{uris.BorderCrop, uris.Normal, uris.Large} {
		if url != "" {
			return url
		}
	}
	return ""
}
