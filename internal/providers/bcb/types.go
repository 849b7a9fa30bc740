package bcb

// observation is one element of the SGS "dados" array.
// Example: {"data": "01/03/2024", "valor": "0,83"}
type observation struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}
