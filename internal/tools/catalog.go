package tools

import (
	openai "github.com/sashabaranov/go-openai"
)

// Declared tool names. ToolSendLegacy is the older text-send name some
// prompts still emit; it behaves exactly like ToolSendText.
const (
	ToolSearchPrograms    = "search_programs"
	ToolGetProgramDetails = "get_program_details"
	ToolSendLegacy        = "send_whatsapp_message"
	ToolSendText          = "send_message_text"
	ToolSendButtons       = "send_message_buttons"
	ToolSendList          = "send_message_list"
)

// Catalog returns the static tool declarations offered to the model.
// The catalog is identical across requests; adding a tool means adding
// one entry here and one handler mapping in the dispatcher.
func Catalog() []openai.Tool {
	return []openai.Tool{
		fn(ToolSearchPrograms,
			"Busca programas de treino no catálogo por nível, modalidade e disponibilidade de equipamento.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"level": map[string]any{
						"type":        "string",
						"description": "Nível do aluno: iniciante, intermediario ou avancado.",
					},
					"modality": map[string]any{
						"type":        "string",
						"description": "Modalidade de treino, por exemplo HIIT, musculacao, yoga.",
					},
					"has_equipment": map[string]any{
						"type":        "boolean",
						"description": "Se o aluno tem acesso a equipamentos.",
					},
				},
				"required": []string{"level", "modality", "has_equipment"},
			}),
		fn(ToolGetProgramDetails,
			"Retorna os detalhes completos de um programa de treino pelo seu identificador.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"program_id": map[string]any{
						"type":        "string",
						"description": "Identificador do programa retornado pela busca.",
					},
				},
				"required": []string{"program_id"},
			}),
		fn(ToolSendLegacy,
			"(Legado) Envia uma mensagem de texto simples por WhatsApp. Prefira send_message_text.",
			textParams()),
		fn(ToolSendText,
			"Envia uma mensagem de texto simples por WhatsApp.",
			textParams()),
		fn(ToolSendButtons,
			"Envia uma mensagem interativa com até 3 botões de resposta rápida por WhatsApp.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to": map[string]any{
						"type":        "string",
						"description": "Telefone de destino. Se omitido, usa o telefone do usuário da conversa.",
					},
					"body":   map[string]any{"type": "string", "description": "Texto principal da mensagem."},
					"header": map[string]any{"type": "string", "description": "Cabeçalho opcional."},
					"footer": map[string]any{"type": "string", "description": "Rodapé opcional."},
					"buttons": map[string]any{
						"type":     "array",
						"minItems": 1,
						"maxItems": MaxButtons,
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":    map[string]any{"type": "string"},
								"title": map[string]any{"type": "string"},
							},
							"required": []string{"id", "title"},
						},
					},
				},
				"required": []string{"body", "buttons"},
			}),
		fn(ToolSendList,
			"Envia uma mensagem interativa de lista com até 10 seções de até 10 itens por WhatsApp.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to": map[string]any{
						"type":        "string",
						"description": "Telefone de destino. Se omitido, usa o telefone do usuário da conversa.",
					},
					"body":        map[string]any{"type": "string", "description": "Texto principal da mensagem."},
					"button_text": map[string]any{"type": "string", "description": "Rótulo do botão que abre a lista."},
					"header":      map[string]any{"type": "string", "description": "Cabeçalho opcional."},
					"footer":      map[string]any{"type": "string", "description": "Rodapé opcional."},
					"sections": map[string]any{
						"type":     "array",
						"minItems": 1,
						"maxItems": MaxListSections,
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"title": map[string]any{"type": "string"},
								"rows": map[string]any{
									"type":     "array",
									"minItems": 1,
									"maxItems": MaxRowsPerSection,
									"items": map[string]any{
										"type": "object",
										"properties": map[string]any{
											"id":          map[string]any{"type": "string"},
											"title":       map[string]any{"type": "string"},
											"description": map[string]any{"type": "string"},
										},
										"required": []string{"id", "title"},
									},
								},
							},
							"required": []string{"title", "rows"},
						},
					},
				},
				"required": []string{"body", "sections"},
			}),
	}
}

func textParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Telefone de destino. Se omitido, usa o telefone do usuário da conversa.",
			},
			"text": map[string]any{"type": "string", "description": "Conteúdo da mensagem."},
		},
		"required": []string{"text"},
	}
}

func fn(name, description string, params map[string]any) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}
