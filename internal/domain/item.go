package domain

import "fmt"

// ItemKind discriminates item subtypes. Values match the dtype column.
type ItemKind string

const (
	ItemKindBook  ItemKind = "B"
	ItemKindAlbum ItemKind = "A"
	ItemKindMovie ItemKind = "M"
)

// ParseItemKind validates a discriminator value.
func ParseItemKind(raw string) (ItemKind, error) {
	switch ItemKind(raw) {
	case ItemKindBook, ItemKindAlbum, ItemKindMovie:
		return ItemKind(raw), nil
	default:
		return "", fmt.Errorf("unknown item kind %q", raw)
	}
}

type BookDetails struct {
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

type AlbumDetails struct {
	Artist string `json:"artist"`
	Etc    string `json:"etc"`
}

type MovieDetails struct {
	Director string `json:"director"`
	Actor    string `json:"actor"`
}

// Item is a sellable product. Exactly one subtype payload is set, selected by Kind.
type Item struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Price         int           `json:"price"`
	StockQuantity int           `json:"stockQuantity"`
	Kind          ItemKind      `json:"kind"`
	Book          *BookDetails  `json:"book,omitempty"`
	Album         *AlbumDetails `json:"album,omitempty"`
	Movie         *MovieDetails `json:"movie,omitempty"`
}

// NewBook builds a book item.
func NewBook(name string, price, stock int, author, isbn string) *Item {
	return &Item{Name: name, Price: price, StockQuantity: stock, Kind: ItemKindBook, Book: &BookDetails{Author: author, ISBN: isbn}}
}

// NewAlbum builds an album item.
func NewAlbum(name string, price, stock int, artist, etc string) *Item {
	return &Item{Name: name, Price: price, StockQuantity: stock, Kind: ItemKindAlbum, Album: &AlbumDetails{Artist: artist, Etc: etc}}
}

// NewMovie builds a movie item.
func NewMovie(name string, price, stock int, director, actor string) *Item {
	return &Item{Name: name, Price: price, StockQuantity: stock, Kind: ItemKindMovie, Movie: &MovieDetails{Director: director, Actor: actor}}
}

// AddStock increases stock.
func (i *Item) AddStock(quantity int) {
	i.StockQuantity += quantity
}

// RemoveStock decreases stock, failing without change when stock would go negative.
func (i *Item) RemoveStock(quantity int) error {
	rest := i.StockQuantity - quantity
	if rest < 0 {
		return &InsufficientStockError{ItemID: i.ID, Requested: quantity, Available: i.StockQuantity}
	}
	i.StockQuantity = rest
	return nil
}

// Validate checks that the subtype payload matches the discriminator.
func (i *Item) Validate() error {
	if _, err := ParseItemKind(string(i.Kind)); err != nil {
		return err
	}
	if i.StockQuantity < 0 {
		return fmt.Errorf("item %q has negative stock", i.Name)
	}
	set := 0
	for _, present := range []bool{i.Book != nil, i.Album != nil, i.Movie != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("item %q carries more than one subtype payload", i.Name)
	}
	switch {
	case i.Kind == ItemKindBook && i.Album == nil && i.Movie == nil,
		i.Kind == ItemKindAlbum && i.Book == nil && i.Movie == nil,
		i.Kind == ItemKindMovie && i.Book == nil && i.Album == nil:
		return nil
	}
	return fmt.Errorf("item %q payload does not match kind %s", i.Name, i.Kind)
}
