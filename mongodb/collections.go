package mongodb

const (
	ChallengesCollection = "challenges"
	CodesCollection      = "authorization_codes"
	SessionsCollection   = "sessions"
)
