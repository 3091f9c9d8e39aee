package service

import "strings"

// ChatService returns canned agricultural-assistant replies matched by
// keyword. There is no model behind it and no conversation state.
type ChatService struct{}

func NewChatService() *ChatService {
	return &ChatService{}
}

type cannedReply struct {
	keywords []string
	reply    string
}

var cannedReplies = []cannedReply{
	{
		keywords: []string{"pest", "insect", "bug"},
		reply: "For pest concerns, upload a photo of the affected plant and I can run " +
			"a pest detection analysis. Common rice pests in Thailand include the brown " +
			"planthopper and rice stem borer.",
	},
	{
		keywords: []string{"disease", "fungus", "blight", "spot"},
		reply: "Leaf discoloration or spotting often indicates a fungal disease. Upload " +
			"a clear photo of the leaves and I can run a disease detection analysis.",
	},
	{
		keywords: []string{"rice", "crop", "plant", "farm"},
		reply: "I can help analyze crop health from photos. Send an image of your plants " +
			"and choose pest detection, disease detection, or a comprehensive analysis.",
	},
	{
		keywords: []string{"hello", "hi", "สวัสดี"},
		reply:    "Hello! I am an agricultural assistant. Upload a plant photo or ask me about pests and diseases.",
	},
}

const defaultReply = "I can help with plant pest and disease questions. Try uploading a " +
	"photo for analysis, or ask about a specific pest or disease."

// Reply picks the first canned answer whose keyword appears in the message,
// case-insensitively.
func (s *ChatService) Reply(message string) string {
	lower := strings.ToLower(message)
	for _, c := range cannedReplies {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.reply
			}
		}
	}
	return defaultReply
}
