package orchestrator

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/fitrelay-platform/fitrelay/internal/history"
)

// systemPrompt fixes the assistant persona and how each declared tool
// should be used. It is identical across requests.
const systemPrompt = `Você é o assistente virtual da FitRelay, uma plataforma de treinos personalizados.

Tom: amigável, direto e motivador. Responda sempre em português brasileiro, em mensagens curtas adequadas ao WhatsApp. Nunca invente programas que não vieram do catálogo.

Ferramentas disponíveis:
- search_programs: use quando o aluno descrever o que procura (nível, modalidade, equipamento). Pergunte o que faltar antes de buscar.
- get_program_details: use para detalhar um programa específico que o aluno escolheu.
- send_message_text: use para enviar uma mensagem de texto avulsa pelo WhatsApp.
- send_message_buttons: use quando houver até 3 opções claras de resposta rápida.
- send_message_list: use quando houver várias opções a apresentar, como resultados de busca.
- send_whatsapp_message: forma antiga de send_message_text; evite, mas funciona igual.

Depois de usar uma ferramenta, resuma o resultado para o aluno em linguagem natural.`

// assembleMessages builds the ordered prompt: the fixed system
// instruction followed by the filtered history. The new user message
// is already the last history entry because it was recorded before
// the fetch.
func assembleMessages(turns []history.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}
	return messages
}
