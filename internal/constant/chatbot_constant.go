package constant

const (
	ChatTypeUser      = "user"
	ChatTypeAssistant = "assistant"

	// Default title assigned to a session created without one. Replaced by the
	// first user message (truncated) as soon as it arrives.
	DefaultSessionTitle = "New Chat"

	// SessionTitleMaxLen bounds the title derived from the first message.
	// Longer messages are cut and suffixed with SessionTitleEllipsis.
	SessionTitleMaxLen   = 30
	SessionTitleEllipsis = "..."

	// EmbeddingDimension is fixed at write time. all-minilm and compatible
	// sentence-transformer models produce 384-dim vectors.
	EmbeddingDimension = 384

	// Similarity search bounds. Out-of-range k is clamped, never rejected.
	SearchTopKMin     = 1
	SearchTopKMax     = 50
	SearchTopKDefault = 5

	// Fetch limits for history endpoints.
	ChatHistoryDefaultLimit     = 50
	AnalysisHistoryDefaultLimit = 10

	// How many retrieved records prime the LLM context for a reply.
	ContextRetrievalTopK = 3

	// Ollama defaults
	OllamaDefaultBaseURL        = "http://localhost:11434"
	OllamaDefaultChatModel      = "llama3.1:8b"
	OllamaDefaultEmbeddingModel = "all-minilm"

	ChatSystemPrompt = `You are an expert video and content analyzer.
Maintain context of ALL interactions including user information, previous chats, and video analyses.
When referring to previous content, be specific about which video you're discussing.
If you make a mistake, acknowledge it and correct yourself.
Format your responses using clean markdown with single # for headers and proper indentation.`

	// RelatedContextPrompt frames retrieved records for the LLM.
	RelatedContextPrompt = `### RELATED HISTORY
The following entries were retrieved from the user's prior conversations and
video analyses because they are semantically close to the current message.
Use them as background context only; do not repeat them verbatim.
`

	VideoAnalysisPromptTemplate = `Analyze this video in detail with the following structure:
# Video Information
- Filename: %s
- Technical Details:
%s
# Content Overview
(Describe the main content and key scenes)

# Technical Quality
(Evaluate video and audio quality)

# Key Points
(List main takeaways)

# Areas for Improvement
(Suggest potential enhancements)
`
)
