package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
)

// groupColors tints each flock; NoGroup uses the first entry.
var groupColors = []color.RGBA{
	{R: 100, G: 200, B: 255, A: 255},
	{R: 255, G: 99, B: 71, A: 255},
	{R: 124, G: 252, B: 0, A: 255},
	{R: 255, G: 215, B: 0, A: 255},
	{R: 186, G: 85, B: 211, A: 255},
	{R: 64, G: 224, B: 208, A: 255},
}

type Game struct {
	world  *simulation.World
	width  int
	height int
	dt     float64
	stats  simulation.StepStats
}

func (g *Game) Update() error {
	stats, err := g.world.Step(g.dt)
	if err != nil {
		return err
	}
	g.stats = stats
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 10, G: 10, B: 30, A: 255})

	for _, v := range g.world.Snapshot() {
		drawBoid(screen, v)
	}

	ebitenutil.DebugPrint(screen, fmt.Sprintf("TPS: %.0f  tick: %d  boids: %d  neighbors/boid: %.1f  relocations: %d",
		ebiten.ActualTPS(), g.stats.Tick, g.stats.Agents,
		float64(g.stats.Neighbors)/float64(max(g.stats.Agents, 1)), g.stats.Relocations))
}

func drawBoid(screen *ebiten.Image, v simulation.AgentView) {
	// Heading is counter-clockwise on screen; ebiten's y axis points down.
	angle := -v.Heading * math.Pi / 180
	x, y := v.Pos.X, v.Pos.Y

	tipX := x + math.Cos(angle)*6
	tipY := y + math.Sin(angle)*6
	rightX := x + math.Cos(angle+2.5)*5
	rightY := y + math.Sin(angle+2.5)*5
	leftX := x + math.Cos(angle-2.5)*5
	leftY := y + math.Sin(angle-2.5)*5

	c := groupColors[v.Group%len(groupColors)]
	r, gr, b := float32(c.R)/255, float32(c.G)/255, float32(c.B)/255
	vertices := []ebiten.Vertex{
		{DstX: float32(tipX), DstY: float32(tipY), SrcX: 1, SrcY: 1, ColorR: r, ColorG: gr, ColorB: b, ColorA: 1},
		{DstX: float32(rightX), DstY: float32(rightY), SrcX: 1, SrcY: 1, ColorR: r, ColorG: gr, ColorB: b, ColorA: 1},
		{DstX: float32(leftX), DstY: float32(leftY), SrcX: 1, SrcY: 1, ColorR: r, ColorG: gr, ColorB: b, ColorA: 1},
	}
	indices := []uint16{0, 1, 2}

	screen.DrawTriangles(vertices, indices, whiteImage, &ebiten.DrawTrianglesOptions{})
}

func (g *Game) Layout(w, h int) (int, int) {
	return g.width, g.height
}

var whiteImage = ebiten.NewImage(3, 3)

func init() {
	whiteImage.Fill(color.White)
}

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file (empty for defaults)")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulation.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	world, err := simulation.NewWorld(cfg)
	if err != nil {
		log.Fatal(err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if _, err := world.SpawnFlock(rand.New(rand.NewPCG(seed, seed)), cfg.Population, cfg.Groups); err != nil {
		log.Fatal(err)
	}

	g := &Game{
		world:  world,
		width:  int(cfg.WorldWidth),
		height: int(cfg.WorldHeight),
		dt:     1 / float64(cfg.TickRate),
	}

	ebiten.SetTPS(cfg.TickRate)
	ebiten.SetWindowSize(g.width, g.height)
	ebiten.SetWindowTitle("Boids")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
