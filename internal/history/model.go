package history

import (
	"time"

	"github.com/google/uuid"
)

// Greeting opens every new or reset conversation.
const Greeting = "Olá! 💪 Sou o teu Personal Trainer IA. Estou aqui para te ajudar com treinos personalizados, nutrição, técnicas de exercícios e motivação para alcançares os teus objetivos. Como posso ajudar-te hoje?"

// Message is one chat turn. Content is ciphertext while stored.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analysis is a saved food photo analysis. The image itself is not kept.
type Analysis struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	FoodName    string    `json:"food_name"`
	Calories    int       `json:"calories"`
	Protein     int       `json:"protein"`
	Carbs       int       `json:"carbs"`
	Fat         int       `json:"fat"`
	Fiber       int       `json:"fiber"`
	Description string    `json:"description"`
	Suggestions []string  `json:"suggestions"`
	CreatedAt   time.Time `json:"created_at"`
}

func greetingConversation() []Message {
	return []Message{{Role: "assistant", Content: Greeting}}
}
