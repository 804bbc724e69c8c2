package chain

// RewardHubTokenABI is the ABI for the deployed campus rewards token contract.
// Token issuance is achievement-driven: there is no bare mint entry point, and
// redemption burns from the student balance.
//
// registerStudent/isStudent are optional capabilities; older contract builds
// lack them, which the client resolves at construction time.
const RewardHubTokenABI = `[
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "totalSupply",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "string"}],
		"name": "achievements",
		"outputs": [
			{"name": "title", "type": "string"},
			{"name": "rewardAmount", "type": "uint256"},
			{"name": "active", "type": "bool"}
		],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "", "type": "string"}],
		"name": "perks",
		"outputs": [
			{"name": "title", "type": "string"},
			{"name": "cost", "type": "uint256"},
			{"name": "active", "type": "bool"}
		],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "title", "type": "string"},
			{"name": "rewardAmount", "type": "uint256"}
		],
		"name": "addAchievement",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "oldTitle", "type": "string"},
			{"name": "newTitle", "type": "string"},
			{"name": "rewardAmount", "type": "uint256"}
		],
		"name": "updateAchievement",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "title", "type": "string"}],
		"name": "deactivateAchievement",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "title", "type": "string"},
			{"name": "cost", "type": "uint256"}
		],
		"name": "addPerk",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "oldTitle", "type": "string"},
			{"name": "newTitle", "type": "string"},
			{"name": "cost", "type": "uint256"}
		],
		"name": "updatePerk",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "title", "type": "string"}],
		"name": "deactivatePerk",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "student", "type": "address"},
			{"name": "title", "type": "string"}
		],
		"name": "grantAchievement",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "student", "type": "address"},
			{"name": "title", "type": "string"}
		],
		"name": "redeemPerk",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "student", "type": "address"}],
		"name": "registerStudent",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "student", "type": "address"}],
		"name": "isStudent",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "from", "type": "address"},
			{"indexed": true, "name": "to", "type": "address"},
			{"indexed": false, "name": "value", "type": "uint256"}
		],
		"name": "Transfer",
		"type": "event"
	}
]`
