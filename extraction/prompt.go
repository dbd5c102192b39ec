package extraction

import (
	"fmt"
	"time"
)

const promptTemplate = `You extract expense details from a short message.
Today's date is %s.

Return ONLY a JSON object with exactly these keys, no explanation and no markdown:
{"amount": "<number as string>", "currency": "<ISO 4217 code>", "category": "<category>", "date": "<DD-MM-YYYY>", "payment_method": "<payment method>"}

Rules:
- category is one of: food, housing, transportation, entertainment, other
- payment_method is one of: cash, bank, credit card, other
- date must be written as DD-MM-YYYY
- if a value cannot be determined from the message, use an empty string

Message: %s`

// BuildPrompt 生成抽取提示词
func BuildPrompt(text string, today time.Time) string {
	return fmt.Sprintf(promptTemplate, today.Format("02-01-2006"), text)
}
