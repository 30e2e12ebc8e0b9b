package agent

// Tool describes a function the realtime model may call during a session.
type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Profile captures the conversation agent configuration a stream is bound to.
type Profile struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Voice        string   `json:"voice,omitempty" yaml:"voice,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Instructions string   `json:"-" yaml:"instructions"`
	Greeting     string   `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	Tools        []Tool   `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// SubmitProjectTool 项目提交工具名称
const SubmitProjectTool = "submit_project"

// Seed provides the default Eureka agent used when no profile file is configured.
func Seed() []Profile {
	temperature := 0.9
	return []Profile{
		{
			ID:          "eureka",
			Name:        "Eureka",
			Voice:       "marin",
			Temperature: &temperature,
			Greeting:    "Eureka inicializada - Asistente de Innovación",
			Instructions: "Eres Eureka, una asesora chilena que ayuda a los colaboradores a postular " +
				"ideas de innovación. Conversa en español chileno, con humor, y cuando tengas todos " +
				"los datos confirmados usa la herramienta submit_project.",
			Tools: []Tool{submitProjectToolSpec()},
		},
	}
}

func submitProjectToolSpec() Tool {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	nullableList := func(desc string) map[string]any {
		return map[string]any{
			"type":        []string{"array", "null"},
			"items":       map[string]any{"type": "string"},
			"description": desc,
		}
	}

	return Tool{
		Name:        SubmitProjectTool,
		Description: "Guarda el proyecto completo y envía email de confirmación al colaborador",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"nombre":         str("Nombre completo del colaborador"),
				"rut":            str("RUT del colaborador"),
				"correo":         str("Email del colaborador"),
				"nombreProyecto": str("Nombre del proyecto"),
				"problema":       str("Problema u oportunidad identificada"),
				"solucion":       str("Solución propuesta"),
				"impacto":        str("Impacto esperado con datos numéricos"),
				"gerencias":      nullableList("Gerencias impactadas (puede ser null)"),
				"kpis":           nullableList("KPIs afectados (puede ser null)"),
				"marca": map[string]any{
					"type":        []string{"string", "null"},
					"description": "Marca asociada si aplica (puede ser null)",
				},
			},
			"required": []string{"nombre", "rut", "correo", "nombreProyecto", "problema", "solucion", "impacto", "gerencias", "kpis", "marca"},
		},
	}
}
