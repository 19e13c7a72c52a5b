package api

import (
	"strings"
)

// Fixed user-facing replies. The assistant always answers in the site's
// register (French), and never exposes provider errors or internal detail.
const (
	msgMaintenance = "Désolé, ma base de connaissances est en cours de maintenance (fichier vectoriel introuvable)."
	msgTechnical   = "Désolé, j'ai rencontré une erreur technique en traitant votre demande."
	msgCooldown    = "Vous envoyez trop de messages. Veuillez patienter une minute avant de réessayer."
	msgNoContext   = "Aucune information spécifique trouvée dans la base de connaissances pour cette question."
)

// buildContext combines the always-injected global summary with the
// retrieved chunks, marking the summary as the source of truth. When
// retrieval came back empty the explicit marker replaces the chunks so the
// model knows nothing specific was found.
func buildContext(globalSummary string, chunks []string) string {
	parts := []string{
		"--- RÉSUMÉ GLOBAL (SOURCE DE VÉRITÉ) ---",
		globalSummary,
		"--- DÉTAILS PERTINENTS ---",
	}
	if len(chunks) == 0 {
		parts = append(parts, msgNoContext)
	} else {
		parts = append(parts, chunks...)
	}
	return strings.Join(parts, "\n\n")
}

// buildSystemPrompt assembles the grounded system message: the knowledge
// context plus the fixed behavioral rules of the AtlasBot persona.
func buildSystemPrompt(contextText string) string {
	if contextText == "" {
		contextText = msgNoContext
	}

	return strings.TrimSpace(`
Tu es AtlasBot, l'assistant IA du portfolio de Walson.
Tu es actuellement intégré sur le site web portfolio de Walson. L'utilisateur est un VISITEUR (recruteur, dev, etc.).

CONTEXTE (Informations trouvées dans la base de connaissances) :
` + contextText + `

RÈGLES STRICTES :
1. **Identité** : Tu t'appelles "AtlasBot". Tu es un guide pour ce portfolio, PAS un assistant de code généraliste.
2. **Utilisateur** : L'utilisateur N'EST PAS Walson. Appelle-le "vous". Ne dis jamais "Au revoir Walson".
3. **Format** : SOIS EXTRÊMEMENT CONCIS. Réponds à la question et ARRÊTE-TOI. Ne pose pas de question en retour ("Voulez-vous...") sauf si c'est VRAIMENT pertinent pour explorer un projet.
4. **Contenu (CRITIQUE)** :
   - Base-toi UNIQUEMENT sur le CONTEXTE.
   - Si une compétence (ex: Rust, Mobile) n'est pas explicitement mentionnée, DIS QUE TU NE SAIS PAS.
   - Disponibilité : STAGE (Janv 2026) ou ALTERNANCE (Sept 2026) uniquement.
5. **Hors-Sujet (Pizza, Café, Blague, Code)** :
   - REFUSE poliment mais fermement.
   - Dis : "Je suis ici pour parler du portfolio de Walson."
   - Ne donne PAS ton avis, ne fais PAS de blague, ne propose PAS d'aide pour choisir un café.

Exemple de bonne réponse :
"Walson cherche un stage à partir de Janvier 2026. Il ne fait pas de mobile."

HISTORIQUE DE CONVERSATION :
(Inclus dans les messages suivants)
`)
}
