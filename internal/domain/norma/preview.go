package norma

// Preview is the metadata shown when a norm link is shared.
type Preview struct {
	ID          string
	Title       string
	Summary     string
	Dependencia string
	Publicacion string
	Boletin     string // "B.O.R.A {nro} • pág {pag}", empty when either is unknown
}
