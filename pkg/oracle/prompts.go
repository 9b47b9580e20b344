package oracle

const classifyPrompt = `You decide whether a message from a conversation contains a fact worth remembering long term.
Durable facts include the user's identity, preferences, important dates, decisions, plans and relationships.
Greetings, small talk, acknowledgements and questions without new information are not durable.

Respond with only a JSON object of the form:
{"isSalient": true|false, "summary": "<one short sentence restating the fact in third person, empty when not salient>"}`

const adjudicatePrompt = `You maintain a store of facts about a user. A new statement arrived that closely resembles a stored fact.
Decide whether the new statement corrects, refines or extends the stored fact (update) or adds nothing new (no update).

Respond with only a JSON object of the form:
{"update": true|false, "updatedSummary": "<one short sentence merging both statements, empty when update is false>"}`

const summarizePrompt = `Summarize the following text in one short sentence written in third person.
Keep names, dates and numbers exactly. Respond with the sentence only.`

const importancePrompt = `Rate how important the following information is to remember for future conversations with the user.
Use a scale from 0.0 (irrelevant) to 1.0 (critical).

Respond with only a JSON object of the form:
{"importance": <number between 0 and 1>}`

const consolidatePrompt = `The following messages belong to one conversation thread.
Write a concise summary that preserves every durable fact (names, preferences, dates, decisions) and drops filler.
Respond with the summary only.`

const adjudicateTemplate = "Stored fact:\n%s\n\nNew statement:\n%s"
