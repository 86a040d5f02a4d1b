package orders

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	FieldOrder           = "OS"
	FieldOrderNumber     = "Número OS"
	FieldType            = "Tipo"
	FieldStatus          = "Status"
	FieldOpeningDate     = "Data Abertura"
	FieldClosingDate     = "Data Fechamento"
	FieldPurpose         = "Finalidade"
	FieldCenterName      = "Razão Social Posto"
	FieldCenterCity      = "Cidade Posto"
	FieldCenterState     = "UF Posto"
	FieldCustomer        = "Consumidor"
	FieldCustomerState   = "UF Cons"
	FieldProduct         = "Desc Produto"
	FieldProductFamily   = "Família Prod"
	FieldManufactureDate = "Data Fabricação"
	FieldBilledTo        = "Faturado Para"
	FieldReseller        = "Revendedor"
	FieldDefectFound     = "Defeito Constatado"
	FieldPartCode        = "Peças Trocadas"
	FieldPartDescription = "Descrição Peça"
)

// PurposeWarranty marks orders covered by warranty.
const PurposeWarranty = "Garantia"

var fieldNames = []string{
	"OS", "Tipo", "Status", "Data Abertura", "Data Fechamento", "Finalidade", "Origem",
	"CNPJ Posto", "Razão Social Posto", "Cidade Posto", "UF Posto", "CPF/CNPJ Consum",
	"Consumidor", "Cidade Cons", "UF Cons", "Telefone", "Telefone 2", "Ref Prod",
	"Desc Produto", "Família Prod", "Lote/Serie", "Data Fabricação", "Data Faturamento",
	"NF de Faturamento", "Faturado Para", "Revendedor", "CNPJ Rev", "Cidade Rev", "UF Rev",
	"NF Compra", "Data NF Compra", "NF Conserto", "Data NF Conserto", "Obs", "Adicionais da OS",
	"Qtde  Adicional da OS", "Vlr Unit Adicional da OS", "Vlr Total Adicional da OS",
	"Obs Adicional da OS", "Defeito Reclamado", "Defeito Constatado", "Garantia", "Tecnico",
	"Data Hora Check", "Lat", "Lng", "Peças Trocadas", "Descrição Peça",
	"Qtde Trocada", "Ação de Reparo", "Defeito Peça", "Obs Defeito Peça", "Data Lançto Peça",
	"Usuários Papel Abertura", "Nº do Extrato", "Status da Extrato", "Data de Pagamento",
}

// Built-in header spellings, most preferred first. The field's own name is
// always tried after its aliases.
var defaultAliases = map[string][]string{
	FieldOrder: {FieldOrderNumber},
}

// IsDateField reports whether a canonical field holds a date.
func IsDateField(name string) bool {
	return strings.Contains(name, "Data") || strings.Contains(name, "Date")
}

// Schema is the fixed column set of a service-order export plus the header
// spellings accepted for each column.
type Schema struct {
	fields  []string
	known   map[string]struct{}
	aliases map[string][]string
}

func DefaultSchema() *Schema {
	s := &Schema{
		fields:  append([]string(nil), fieldNames...),
		known:   make(map[string]struct{}, len(fieldNames)),
		aliases: map[string][]string{},
	}
	for _, f := range fieldNames {
		s.known[f] = struct{}{}
	}
	for field, names := range defaultAliases {
		s.aliases[field] = append([]string(nil), names...)
	}
	return s
}

// WithAliases returns a copy of s that also accepts the given spellings.
// Unknown canonical fields are an error.
func (s *Schema) WithAliases(extra map[string][]string) (*Schema, error) {
	out := &Schema{
		fields:  s.fields,
		known:   s.known,
		aliases: make(map[string][]string, len(s.aliases)+len(extra)),
	}
	for field, names := range s.aliases {
		out.aliases[field] = append([]string(nil), names...)
	}
	for field, names := range extra {
		if !s.Has(field) {
			return nil, fmt.Errorf("alias for unknown field %q", field)
		}
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" || name == field {
				continue
			}
			out.aliases[field] = append(out.aliases[field], name)
		}
	}
	return out, nil
}

func (s *Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}

func (s *Schema) Has(field string) bool {
	_, ok := s.known[field]
	return ok
}

// candidates lists the header names tried for field, in priority order.
func (s *Schema) candidates(field string) []string {
	names := make([]string, 0, len(s.aliases[field])+1)
	names = append(names, s.aliases[field]...)
	return append(names, field)
}

// MissingColumns lists canonical fields that no header in the upload can
// supply.
func (s *Schema) MissingColumns(headers []string) []string {
	exact := make(map[string]struct{}, len(headers))
	folded := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		exact[h] = struct{}{}
		folded[FoldHeader(h)] = struct{}{}
	}

	var missing []string
	for _, field := range s.fields {
		found := false
		for _, name := range s.candidates(field) {
			if _, ok := exact[name]; ok {
				found = true
				break
			}
			if _, ok := folded[FoldHeader(name)]; ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, field)
		}
	}
	return missing
}

// FoldHeader reduces a header to a comparison key: BOM and accents removed,
// lower case, inner whitespace collapsed.
func FoldHeader(raw string) string {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff")
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripper, s); err == nil {
		s = folded
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliases reads extra header spellings from a YAML file of the form
//
//	aliases:
//	  OS: ["Numero da OS"]
func LoadAliases(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var parsed aliasFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}
	return parsed.Aliases, nil
}
