package conversation

import "strings"

var orderStatusKeywords = []string{"status", "nomor pesanan", "order", "resi", "pengiriman"}

var faqKeywords = []string{"jam", "harga", "layanan", "informasi", "alamat", "promo"}

// Classify maps message text to an intent with a fixed confidence.
// Matching is a case-insensitive substring check and the rules are ordered:
// order-status keywords win over FAQ keywords, everything else is out of scope.
// Classify is total; it never fails.
func Classify(text string) Classification {
	normalized := strings.ToLower(text)

	for _, keyword := range orderStatusKeywords {
		if strings.Contains(normalized, keyword) {
			return Classification{Intent: IntentOrderStatus, Confidence: 0.85}
		}
	}

	for _, keyword := range faqKeywords {
		if strings.Contains(normalized, keyword) {
			return Classification{Intent: IntentFAQ, Confidence: 0.70}
		}
	}

	return Classification{Intent: IntentOutOfScope, Confidence: 0.30}
}

// OrderStatusReply is the placeholder reply for order-status requests until
// the order lookup integration ships.
func OrderStatusReply() string {
	return "Fitur pengecekan status pesanan akan segera hadir. " +
		"Tim kami sudah menerima permintaan Anda."
}
