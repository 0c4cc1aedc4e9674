package email

const (
	subjectDealOutcomeFmt = "Negócio %s: %s"
	subjectLeadAssigned   = "Novo lead atribuído a você"

	labelWon  = "Ganho"
	labelLost = "Perdido"
)
