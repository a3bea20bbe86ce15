// Package agentconfigs holds the compiled-in agent roster table served when the
// configuration file does not define its own agent sets.
package agentconfigs

import "realtime-agents/internal/domain"

// DefaultSetKey is the roster selected when agentConfig is missing or unknown.
const DefaultSetKey = "simpleExample"

// AllSets returns a fresh copy of the built-in roster table.
func AllSets() map[string]domain.Roster {
	return map[string]domain.Roster{
		"simpleExample":           simpleExample(),
		"customerServiceRetail":   customerServiceRetail(),
		"frontDeskAuthentication": frontDeskAuthentication(),
	}
}

func simpleExample() domain.Roster {
	return domain.Roster{
		{
			Name:             "greeter",
			Description:      "Agent that greets the user.",
			Instructions:     "Please greet the user and ask them if they'd like a Haiku. If yes, transfer them to the 'haiku' agent.",
			Voice:            "sage",
			DownstreamAgents: []string{"haiku"},
		},
		{
			Name:         "haiku",
			Description:  "Agent that writes haikus.",
			Instructions: "Ask the user for a topic, then reply with a haiku about that topic.",
			Voice:        "sage",
		},
	}
}

func customerServiceRetail() domain.Roster {
	return domain.Roster{
		{
			Name:             "authentication",
			Description:      "The initial agent that greets the user, does authentication and routes them to the right downstream agent.",
			Instructions:     "Greet the caller, verify their identity with phone number, date of birth and the last four digits of their payment method, then route them.",
			Voice:            "sage",
			Tools:            []string{"authenticate_user_information", "save_or_update_address", "update_user_offer_response"},
			DownstreamAgents: []string{"returns", "sales", "simulatedHuman"},
		},
		{
			Name:             "returns",
			Description:      "Customer Service Agent specialized in order lookups, policy checks, and return initiations.",
			Instructions:     "Help the user with returns: look up orders, check the return policy and initiate a return when eligible.",
			Voice:            "sage",
			Tools:            []string{"lookupOrders", "retrievePolicy", "checkEligibilityAndPossiblyInitiateReturn"},
			DownstreamAgents: []string{"authentication", "sales", "simulatedHuman"},
		},
		{
			Name:             "sales",
			Description:      "Handles sales-related inquiries, including new product details, recommendations, promotions, and purchase flows.",
			Instructions:     "Help the user find products, explain current promotions and add items to their cart.",
			Voice:            "sage",
			Tools:            []string{"lookupNewSales", "addToCart", "checkout"},
			DownstreamAgents: []string{"authentication", "returns", "simulatedHuman"},
		},
		{
			Name:             "simulatedHuman",
			Description:      "Placeholder, simulated human agent that can provide more advanced help to the user.",
			Instructions:     "You are a helpful human assistant. Speak as a friendly, patient support representative.",
			Voice:            "sage",
			DownstreamAgents: []string{"authentication", "returns", "sales"},
		},
	}
}

func frontDeskAuthentication() domain.Roster {
	return domain.Roster{
		{
			Name:             "authentication",
			Description:      "The initial agent that greets the user, does authentication and routes them to the right downstream agent.",
			Instructions:     "Greet the user, collect their first name, phone number and date of birth, and confirm each value back to them.",
			Voice:            "sage",
			Tools:            []string{"authenticate_user_information"},
			DownstreamAgents: []string{"tourGuide"},
		},
		{
			Name:             "tourGuide",
			Description:      "Conversational tour guide for the building once the user is authenticated.",
			Instructions:     "Give the authenticated visitor a short, friendly tour of the facilities and answer their questions.",
			Voice:            "sage",
			DownstreamAgents: []string{"authentication"},
		},
	}
}
